package horizons

// Trimmed Horizons results used across tests.
const (
	mercuryElements = `*******************************************************************************
Ephemeris / API_USER Mon Jan  1 00:00:00 2024 Pasadena, USA      / Horizons
*******************************************************************************
Target body name: Mercury (199)                   {source: DE441}
Center body name: Sun (10)                        {source: DE441}
*******************************************************************************
            JDTDB,            Calendar Date (TDB),
$$SOE
2460310.500000000 = A.D. 2024-Jan-01 00:00:00.0000 TDB
 EC= 2.056359518046547E-01 QR= 4.600118569389298E+07 IN= 7.003501830138498E+00
 OM= 4.830230318545029E+01 W = 2.918492318519834E+01 Tp=  2460306.018357925676
 N = 4.736505245432393E-05 MA= 1.834088613218226E+01 TA= 2.844781939386339E+01
 A = 5.790921148738437E+07 AD= 6.981723728087576E+07 PR= 7.600623587432452E+06
2460310.541666667 = A.D. 2024-Jan-01 01:00:00.0000 TDB
 EC= 2.056359515404871E-01 QR= 4.600118571165022E+07 IN= 7.003501829958718E+00
 OM= 4.830230318364281E+01 W = 2.918492321364912E+01 Tp=  2460306.018357963391
 N = 4.736505244937207E-05 MA= 1.851137115117396E+01 TA= 2.869850197432071E+01
 A = 5.790921149141998E+07 AD= 6.981723727118975E+07 PR= 7.600623588227071E+06
$$EOE
*******************************************************************************
`

	marsVectors = `*******************************************************************************
Target body name: Mars (499)                      {source: mar097}
Center body name: Earth (399)                     {source: DE441}
*******************************************************************************
$$SOE
2460310.500000000 = A.D. 2024-Jan-01 00:00:00.0000 TDB
 X =-1.083357434613553E+08 Y =-1.098717236505212E+08 Z =-1.052404232862510E+06
2460311.500000000 = A.D. 2024-Jan-02 00:00:00.0000 TDB
 X =-1.082240157213563E+08 Y =-1.104598462837621E+08 Z =-1.068812236310310E+06
$$EOE
*******************************************************************************
`
)
